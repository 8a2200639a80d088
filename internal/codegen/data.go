package codegen

// ---------------------------------------------------------------------------
// Data segment
// ---------------------------------------------------------------------------

// DataSegment interns string literals. Each distinct text gets one
// length-prefixed record, numbered in first-use order.
type DataSegment struct {
	index map[string]int
	texts []string
}

// NewDataSegment returns an empty segment.
func NewDataSegment() *DataSegment {
	return &DataSegment{index: make(map[string]int)}
}

// Intern returns the label of text, adding a record the first time.
func (d *DataSegment) Intern(text string) string {
	if i, ok := d.index[text]; ok {
		return MessageName(i)
	}
	i := len(d.texts)
	d.index[text] = i
	d.texts = append(d.texts, text)
	return MessageName(i)
}

// Len returns the number of distinct records.
func (d *DataSegment) Len() int { return len(d.texts) }

// Flush returns one Message per record in label order.
func (d *DataSegment) Flush() []Instr {
	out := make([]Instr, 0, len(d.texts))
	for i, text := range d.texts {
		out = append(out, Message{Index: i, Text: text})
	}
	return out
}
