package buildcontext

import (
	"maps"
	"slices"
	"strings"
)

// Placeholders returns the {name} substitutions every configured command may use.
func (c *Context) Placeholders() map[string]string {
	return map[string]string{
		"root":     c.rootPath,
		"base":     c.basePath,
		"install":  c.InstallPath(),
		"version":  c.appVersion,
		"date":     c.date,
		"revision": c.revision,
		"run_id":   c.runID,
	}
}

// Expand substitutes {name} placeholders in each argument. Entries in extra
// take precedence over the context's own placeholders; unknown names are left
// untouched.
func (c *Context) Expand(args []string, extra map[string]string) []string {
	values := c.Placeholders()
	maps.Copy(values, extra)

	pairs := make([]string, 0, 2*len(values))
	for _, k := range slices.Sorted(maps.Keys(values)) {
		pairs = append(pairs, "{"+k+"}", values[k])
	}
	r := strings.NewReplacer(pairs...)

	out := make([]string, len(args))
	for i, a := range args {
		out[i] = r.Replace(a)
	}
	return out
}
