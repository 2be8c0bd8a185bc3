package commands

import (
	"encoding/json"
	"io"
	"os"
)

type Globals struct {
	Version string
	Out     io.Writer
}

func (g *Globals) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
