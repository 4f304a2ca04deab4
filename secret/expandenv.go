package secret

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
)

var bracedVar = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnvStrict expands $VAR and ${VAR} in s. Braced references to unset
// variables are an error; bare $VAR expands to "" like os.ExpandEnv. "$$"
// yields a literal "$".
func ExpandEnvStrict(s string) (string, error) {
	const dollar = "\x00querycache-dollar\x00"
	s = strings.ReplaceAll(s, "$$", dollar)

	var missing []string
	for _, m := range bracedVar.FindAllStringSubmatch(s, -1) {
		if _, ok := os.LookupEnv(m[1]); !ok && !slices.Contains(missing, m[1]) {
			missing = append(missing, m[1])
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return "", fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(missing, ", "))
	}

	return strings.ReplaceAll(os.ExpandEnv(s), dollar, "$"), nil
}
