// Package flagx holds small helpers around the standard flag package that the
// config layers share: pre-filtering os.Args so that the JSON config path can
// be read before the full flag set is parsed, and a human-size flag value.
package flagx

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/docker/go-units"
)

// FilterArgs keeps only the allowed flags from args, together with their
// values. Both "-c conf.json" and "--config=conf.json" forms are recognised.
// A following argument that starts with '-' is never taken as a value.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name, _, _ := strings.Cut(arg, "=")
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

// JsonConfigFlags returns the config file path given via -c or -config in
// os.Args, or "" when none is present. Other flags are ignored.
func JsonConfigFlags() string {
	return JsonConfigFlagsFrom(os.Args[1:])
}

func JsonConfigFlagsFrom(args []string) string {
	var config string

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.StringVar(&config, "config", "", "Path to config file")
	fs.StringVar(&config, "c", "", "Path to config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config", "--config"}))

	return config
}

// ByteSize is a flag.Value accepting human sizes such as "4MiB", "320KiB"
// or a plain byte count.
type ByteSize int64

func (b *ByteSize) String() string {
	if b == nil {
		return "0B"
	}
	return units.BytesSize(float64(*b))
}

func (b *ByteSize) Set(s string) error {
	n, err := ParseByteSize(s)
	if err != nil {
		return err
	}
	*b = ByteSize(n)
	return nil
}

// ParseByteSize parses binary (KiB/MiB) and decimal (KB/MB) sizes; bare
// numbers are bytes.
func ParseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(strings.ToLower(s), "i") {
		n, err := units.RAMInBytes(s)
		if err != nil {
			return 0, fmt.Errorf("invalid size %q: %w", s, err)
		}
		return n, nil
	}
	n, err := units.FromHumanSize(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return n, nil
}
