package recording

import (
	"gopkg.in/yaml.v3"

	"github.com/httpmock/httpmock/pkg/mock"
)

// WhenThen is one captured interaction: the request constraints and the
// response to replay.
type WhenThen struct {
	When *mock.RequestRequirements `yaml:"when"`
	Then *mock.ResponseSpec        `yaml:"then"`
}

// Document is the portable recording export format.
type Document struct {
	Mocks []WhenThen `yaml:"mocks"`
}

// Export serializes captured definitions as a YAML document.
func Export(defs []*mock.Definition) ([]byte, error) {
	doc := Document{Mocks: make([]WhenThen, 0, len(defs))}
	for _, d := range defs {
		doc.Mocks = append(doc.Mocks, WhenThen{When: d.Request, Then: d.Response})
	}
	out, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, &DataConversionError{Reason: "marshaling recording document", Err: err}
	}
	return out, nil
}

// Load parses a YAML document back into mock definitions. Empty or malformed
// content fails with DataConversionError.
func Load(content []byte) ([]*mock.Definition, error) {
	if len(content) == 0 {
		return nil, &DataConversionError{Reason: "document is empty"}
	}
	var doc Document
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, &DataConversionError{Reason: "parsing recording document", Err: err}
	}
	if len(doc.Mocks) == 0 {
		return nil, &DataConversionError{Reason: "document contains no mocks"}
	}
	defs := make([]*mock.Definition, 0, len(doc.Mocks))
	for _, wt := range doc.Mocks {
		defs = append(defs, &mock.Definition{Request: wt.When, Response: wt.Then})
	}
	return defs, nil
}
