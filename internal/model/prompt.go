package model

// DilemmaPrompt is one entry of the prompt catalog. Prompts are loaded once
// at startup and never mutated.
type DilemmaPrompt struct {
	ID       string   `json:"id" bson:"id" yaml:"id"`
	Category string   `json:"category" bson:"category" yaml:"category"`
	Text     string   `json:"text" bson:"text" yaml:"text"`
	Tags     []string `json:"tags,omitempty" bson:"tags,omitempty" yaml:"tags,omitempty"`
}

// HasTag reports whether the prompt carries the given tag
func (p DilemmaPrompt) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
