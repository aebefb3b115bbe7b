package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// DueLabel renders remaining seconds the way the review list shows them:
// whole minutes rounded up while waiting, "Ready to review" when due.
func DueLabel(remaining int) string {
	if remaining <= 0 {
		return "Ready to review"
	}
	return fmt.Sprintf("Review in %dm", (remaining+59)/60)
}

// Ladder renders the escalation ladder with the reached steps filled in.
func Ladder(step, n int) string {
	out := make([]byte, n)
	for i := range n {
		if i <= step {
			out[i] = '#'
		} else {
			out[i] = '.'
		}
	}
	return string(out)
}

func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
