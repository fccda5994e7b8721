package chains

import (
	"fmt"
	"io"
)

// Render writes the registry as tab separated id, name and symbol rows.
func Render(w io.Writer, r *Registry) error {
	for _, c := range r.chains {
		if _, err := fmt.Fprintf(w, "%d\t%s\t%s\n", c.ID, c.Name, c.Symbol); err != nil {
			return err
		}
	}
	return nil
}
