package diff

import (
	"fmt"
	"strings"
)

// validate checks the Diff invariants and returns an error on the first violation.
func (d Diff) validate() error {
	var origConcat, editConcat strings.Builder
	for i, op := range d.Ops {
		if op.Text == "" {
			return fmt.Errorf("op[%d]: empty text", i)
		}
		if i > 0 && d.Ops[i-1].Op == op.Op {
			return fmt.Errorf("op[%d]: same op as previous (%s)", i, op.Op)
		}
		switch op.Op {
		case OpEqual:
			origConcat.WriteString(op.Text)
			editConcat.WriteString(op.Text)
		case OpDelete:
			origConcat.WriteString(op.Text)
		case OpInsert:
			editConcat.WriteString(op.Text)
		default:
			return fmt.Errorf("op[%d]: unknown op %d", i, int(op.Op))
		}
	}

	if origConcat.String() != d.OrigText {
		return fmt.Errorf("ops do not reconstruct the original text")
	}
	if editConcat.String() != d.EditText {
		return fmt.Errorf("ops do not reconstruct the edit text")
	}
	return nil
}
