package domain

// MIME classifications for artifacts.
const (
	MIMECSV  = "text/csv"
	MIMEXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMEPNG  = "image/png"
)

// Artifact is a named, typed byte payload produced by the renderer.
// Name includes the file extension and is used as the attachment name.
type Artifact struct {
	Name string
	MIME string
	Data []byte
}

// IsImage reports whether the artifact is a chart image.
func (a Artifact) IsImage() bool {
	return a.MIME == MIMEPNG
}
