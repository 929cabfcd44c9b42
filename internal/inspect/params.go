package inspect

import (
	"strings"

	"github.com/pgschema/pgdiff/internal/ir"
	"github.com/pgschema/pgdiff/internal/util"
)

var argModes = map[string]string{
	"i": "",
	"o": "OUT",
	"b": "INOUT",
	"v": "VARIADIC",
	"t": "TABLE",
}

// parseParameters splits pg_get_function_arguments output into parameters.
// names and modes are proargnames and proargmodes; TABLE columns come last
// in both and are not part of args.
func parseParameters(args string, names, modes []string) []*ir.Parameter {
	var params []*ir.Parameter
	for k, piece := range util.SplitTopLevel(args, ',') {
		p := &ir.Parameter{}
		if k < len(modes) {
			p.Mode = argModes[modes[k]]
		}
		for _, kw := range []string{"INOUT ", "OUT ", "VARIADIC ", "IN "} {
			if strings.HasPrefix(piece, kw) {
				if p.Mode == "" && kw != "IN " {
					p.Mode = strings.TrimSpace(kw)
				}
				piece = strings.TrimPrefix(piece, kw)
				break
			}
		}

		if k < len(names) && names[k] != "" {
			if prefix := util.QuoteIdentifier(names[k]) + " "; strings.HasPrefix(piece, prefix) {
				p.Name = names[k]
				piece = strings.TrimPrefix(piece, prefix)
			}
		}

		if idx := strings.Index(piece, " DEFAULT "); idx >= 0 {
			def := strings.TrimSpace(piece[idx+len(" DEFAULT "):])
			p.Default = &def
			piece = piece[:idx]
		}
		p.DataType = strings.TrimSpace(piece)
		params = append(params, p)
	}
	return params
}
