package db

type Plan struct {
	ID         int64
	Kind       string
	Capability string
	Device     string
	Timestamp  int64
	Entries    []*Entry
}

type Entry struct {
	ID        int64
	Order     int
	Kind      string
	Domain    string
	Path      string
	User      int
	Group     int
	LinkGroup *int64
	Hash      []byte
	Size      int
	Xattrs    map[string][]byte
}

type BlobMeta struct {
	ID     int64
	Hash   []byte
	Secret []byte
	IV     []byte
	Name   []byte
	Size   int
}
