package assets

type vendorEntry struct {
	name string
	url  string
}

var vendorTable = []vendorEntry{
	{"React", "/assets/root/js/vendors/react/18.3.1/umd/react.production.min.js"},
	{"react", "/assets/root/js/vendors/react/18.3.1/umd/react.production.min.js"},
	{"react-dom", "/assets/root/js/vendors/react-dom/18.3.1/umd/react-dom.production.min.js"},
	{"react-dom/server", "/assets/root/js/vendors/react-dom/18.3.1/umd/react-dom-server.browser.production.min.js"},
	{"single-spa", "/assets/root/js/vendors/single-spa/6.0.1/system/single-spa.min.js"},
	{"lodash", "/assets/root/js/vendors/lodash/4.17.21/lodash.min.js"},
	{"axios", "/assets/root/js/vendors/axios/0.28.1/axios.min.js"},
	{"antd", "/assets/root/js/vendors/antd/5.19.3/antd.min.js"},
	{"immutable", "/assets/root/js/vendors/immutable/3.7.6/immutable.min.js"},
	{"@ant-design/icons", "/assets/root/js/vendors/ant-design-icons/5.4.0/index.umd.min.js"},
	{"react-virtualized", "/assets/root/js/vendors/react-virtualized/9.22.3/react-virtualized.min.js"},
	{"react-beautiful-dnd", "/assets/root/js/vendors/react-beautiful-dnd/13.1.0/react-beautiful-dnd.min.js"},
	{"react-query", "/assets/root/js/vendors/react-query/3.39.3/react-query.production.js"},
	{"dayjs", "/assets/root/js/vendors/dayjs/1.11.12/dayjs.min.js"},
	// The luxon bundle is published under the dayjs file name on the asset host.
	{"luxon", "/assets/root/js/vendors/luxon/3.4.4/dayjs.min.js"},
	{"moment", "/assets/root/js/vendors/moment/2.29.1/moment.min.js"},
}

// VendorImportMap maps shared library identifiers to the URLs they are served from.
// It is built once at startup and never mutated.
type VendorImportMap struct {
	imports map[string]string
}

func NewVendorImportMap() VendorImportMap {
	imports := make(map[string]string, len(vendorTable))
	for _, entry := range vendorTable {
		imports[entry.name] = entry.url
	}
	return VendorImportMap{imports: imports}
}

// Imports returns a copy of the mapping so callers cannot mutate the shared table.
func (m VendorImportMap) Imports() map[string]string {
	out := make(map[string]string, len(m.imports))
	for name, url := range m.imports {
		out[name] = url
	}
	return out
}

func (m VendorImportMap) Len() int {
	return len(m.imports)
}
