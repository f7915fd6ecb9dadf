package releases

// Index represents the content of index.json at the root of a release server.
type Index struct {
	Format string `json:"format"`

	Releases []ReleaseFull `json:"releases"`
}
