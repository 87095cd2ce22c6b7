package vision

import "github.com/af-corp/foodguard-gateway/internal/refset"

// Label pairs a zero-shot prompt text with the verdict category it votes for.
type Label struct {
	Text     string
	Category string
}

// DefaultLabels is the candidate set every image is scored against. The food
// prompts compete directly with the unsafe and off-topic ones, so a single
// distribution covers both axes.
func DefaultLabels() []Label {
	return []Label{
		// Food
		{"a photo of food", refset.LabelFood},
		{"a plated meal", refset.LabelFood},
		{"a cooked dish", refset.LabelFood},
		{"raw ingredients for cooking", refset.LabelFood},
		{"a drink or beverage", refset.LabelFood},

		// Unsafe: explicit
		{"a nude person", refset.LabelUnsafe},
		{"explicit nudity", refset.LabelUnsafe},
		{"pornographic content", refset.LabelUnsafe},
		// Unsafe: violence
		{"a weapon", refset.LabelUnsafe},
		{"a violent scene", refset.LabelUnsafe},
		{"blood and gore", refset.LabelUnsafe},

		// Off-topic
		{"a photo of a person", refset.LabelNotFood},
		{"a face portrait", refset.LabelNotFood},
		{"a landscape", refset.LabelNotFood},
		{"a document or text", refset.LabelNotFood},
		{"an animal", refset.LabelNotFood},
		{"a building", refset.LabelNotFood},
	}
}

func labelTexts(labels []Label) []string {
	texts := make([]string, len(labels))
	for i, l := range labels {
		texts[i] = l.Text
	}
	return texts
}

func categoryOf(labels []Label, text string) string {
	for _, l := range labels {
		if l.Text == text {
			return l.Category
		}
	}
	return refset.LabelNotFood
}
