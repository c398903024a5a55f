// Built-in placeholder generators: crypto digests, time-shifted
// timestamps, random primitives, and regex-driven strings, called as
// ${func(arg1,arg2)} inside a compiled template, plus zero-argument
// legacy names (${uuid}, ${random_email}, ...) resolved directly by
// Context.Get.
package scenario

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lucasjones/reggen"
)

const alphanum = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generatorFuncs is looked up by name for ${func(args)} placeholders.
var generatorFuncs = map[string]func([]string) string{
	"hmac_sha256": func(args []string) string {
		if len(args) != 2 {
			return "ERROR:hmac_sha256_needs_2_args"
		}
		h := hmac.New(sha256.New, []byte(args[0]))
		h.Write([]byte(args[1]))
		return hex.EncodeToString(h.Sum(nil))
	},
	"base64_encode": func(args []string) string {
		if len(args) != 1 {
			return "ERROR:base64_encode_needs_1_arg"
		}
		return base64.StdEncoding.EncodeToString([]byte(args[0]))
	},
	"md5": func(args []string) string {
		if len(args) != 1 {
			return "ERROR:md5_needs_1_arg"
		}
		sum := md5.Sum([]byte(args[0]))
		return hex.EncodeToString(sum[:])
	},
	"sha256": func(args []string) string {
		if len(args) != 1 {
			return "ERROR:sha256_needs_1_arg"
		}
		sum := sha256.Sum256([]byte(args[0]))
		return hex.EncodeToString(sum[:])
	},
	"time_future": func(args []string) string { return shiftedTime(args, 1) },
	"time_past":   func(args []string) string { return shiftedTime(args, -1) },
	"random_choice": func(args []string) string {
		if len(args) == 0 {
			return ""
		}
		return args[rand.IntN(len(args))]
	},
	"random_int_range": func(args []string) string {
		if len(args) != 2 {
			return "ERROR:random_int_range_needs_min_max"
		}
		min, _ := strconv.Atoi(strings.TrimSpace(args[0]))
		max, _ := strconv.Atoi(strings.TrimSpace(args[1]))
		if max <= min {
			return strconv.Itoa(min)
		}
		return strconv.Itoa(rand.IntN(max-min) + min)
	},
	"random_float_range": func(args []string) string {
		if len(args) < 2 {
			return "ERROR:random_float_range_needs_min_max"
		}
		min, _ := strconv.ParseFloat(strings.TrimSpace(args[0]), 64)
		max, _ := strconv.ParseFloat(strings.TrimSpace(args[1]), 64)
		decimals := 2
		if len(args) >= 3 {
			if d, err := strconv.Atoi(strings.TrimSpace(args[2])); err == nil {
				decimals = d
			}
		}
		val := min + rand.Float64()*(max-min)
		return fmt.Sprintf("%.*f", decimals, val)
	},
	"random_string": func(args []string) string {
		length := 10
		if len(args) >= 1 {
			if l, err := strconv.Atoi(args[0]); err == nil {
				length = l
			}
		}
		chars := alphanum
		if len(args) >= 2 {
			chars = args[1]
		}
		b := make([]byte, length)
		for i := range b {
			b[i] = chars[rand.IntN(len(chars))]
		}
		return string(b)
	},
	"regex_gen": func(args []string) string {
		if len(args) != 1 {
			return "ERROR:regex_gen_needs_pattern"
		}
		res, err := reggen.Generate(args[0], 10)
		if err != nil {
			return "ERROR:regex_gen_failed"
		}
		return res
	},
}

func shiftedTime(args []string, sign int) string {
	if len(args) < 1 {
		return "ERROR:duration_required"
	}
	dur, err := time.ParseDuration(args[0])
	if err != nil {
		return "ERROR:invalid_duration"
	}
	layout := time.RFC3339
	if len(args) >= 2 {
		layout = args[1]
	}
	if sign < 0 {
		dur = -dur
	}
	return time.Now().Add(dur).Format(layout)
}

// resolveBuiltin answers the zero-argument legacy generator names used as
// plain $name/${name} placeholders, separate from the func(args) form.
func resolveBuiltin(name string) (string, bool) {
	switch name {
	case "uuid":
		return uuid.New().String(), true
	case "random_int":
		return strconv.Itoa(rand.IntN(100000)), true
	case "timestamp":
		return strconv.FormatInt(time.Now().Unix(), 10), true
	case "timestamp_ms":
		return strconv.FormatInt(time.Now().UnixMilli(), 10), true
	case "random_email":
		return fmt.Sprintf("user%d@example.com", rand.IntN(1000000)), true
	case "random_bool":
		if rand.IntN(2) == 0 {
			return "false", true
		}
		return "true", true
	case "random_alphanum":
		b := make([]byte, 10)
		for i := range b {
			b[i] = alphanum[rand.IntN(len(alphanum))]
		}
		return string(b), true
	default:
		return "", false
	}
}

// parseArgs splits a function-call argument string by comma, honoring
// simple double-quoted segments, and trims surrounding quotes.
func parseArgs(s string) []string {
	var args []string
	var cur strings.Builder
	inQuote := false
	for _, r := range s {
		switch r {
		case '"':
			inQuote = !inQuote
		case ',':
			if !inQuote {
				args = append(args, strings.TrimSpace(cur.String()))
				cur.Reset()
				continue
			}
			cur.WriteRune(r)
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		args = append(args, strings.TrimSpace(cur.String()))
	}
	for i, a := range args {
		if len(a) >= 2 && strings.HasPrefix(a, `"`) && strings.HasSuffix(a, `"`) {
			args[i] = a[1 : len(a)-1]
		}
	}
	return args
}
