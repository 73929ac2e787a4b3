package pipeline

import (
	"encoding/json"
	"maps"
	"slices"
)

// Metadata keys set by the pipeline and its collaborators.
const (
	MetaSource = "source"
	MetaURL    = "url"
	MetaURLs   = "urls"
	MetaTitle  = "title"
)

// SourceWebSearch marks documents synthesized from web search hits.
const SourceWebSearch = "web_search"

// Document is one unit of evidence. It is immutable: the constructor copies
// the metadata and accessors return copies.
type Document struct {
	content  string
	metadata map[string]string
}

// NewDocument builds a Document, copying metadata.
func NewDocument(content string, metadata map[string]string) Document {
	var meta map[string]string
	if len(metadata) > 0 {
		meta = maps.Clone(metadata)
	}
	return Document{content: content, metadata: meta}
}

func (d Document) Content() string {
	return d.content
}

// Metadata returns a copy of the document metadata. It is never nil.
func (d Document) Metadata() map[string]string {
	if d.metadata == nil {
		return map[string]string{}
	}
	return maps.Clone(d.metadata)
}

// Meta returns a single metadata value.
func (d Document) Meta(key string) string {
	return d.metadata[key]
}

// IsWebSourced reports whether the document came from web search.
func (d Document) IsWebSourced() bool {
	return d.metadata[MetaSource] == SourceWebSearch
}

type documentJSON struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

func (d Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(documentJSON{Content: d.content, Metadata: d.Metadata()})
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var raw documentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = NewDocument(raw.Content, raw.Metadata)
	return nil
}

// Sources lists the distinct "source" metadata values in document order.
func Sources(docs []Document) []string {
	out := make([]string, 0, len(docs))
	for _, doc := range docs {
		src := doc.Meta(MetaSource)
		if src == "" || slices.Contains(out, src) {
			continue
		}
		out = append(out, src)
	}
	return out
}

func cloneDocuments(docs []Document) []Document {
	out := make([]Document, len(docs))
	copy(out, docs)
	return out
}
