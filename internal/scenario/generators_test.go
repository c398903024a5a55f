package scenario

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratorHmacSha256(t *testing.T) {
	out := generatorFuncs["hmac_sha256"]([]string{"secret", "message"})

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte("message"))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), out)
}

func TestGeneratorHmacSha256WrongArgCount(t *testing.T) {
	assert.Equal(t, "ERROR:hmac_sha256_needs_2_args", generatorFuncs["hmac_sha256"]([]string{"only-one"}))
}

func TestGeneratorBase64Encode(t *testing.T) {
	assert.Equal(t, "aGVsbG8=", generatorFuncs["base64_encode"]([]string{"hello"}))
}

func TestGeneratorMD5AndSha256(t *testing.T) {
	assert.Len(t, generatorFuncs["md5"]([]string{"x"}), 32)
	assert.Len(t, generatorFuncs["sha256"]([]string{"x"}), 64)
}

func TestGeneratorRandomChoice(t *testing.T) {
	out := generatorFuncs["random_choice"]([]string{"a", "b", "c"})
	assert.Contains(t, []string{"a", "b", "c"}, out)
}

func TestGeneratorRandomChoiceEmpty(t *testing.T) {
	assert.Equal(t, "", generatorFuncs["random_choice"](nil))
}

func TestGeneratorRandomIntRange(t *testing.T) {
	for i := 0; i < 20; i++ {
		out := generatorFuncs["random_int_range"]([]string{"1", "3"})
		n, err := strconv.Atoi(out)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 1)
		assert.Less(t, n, 3)
	}
}

func TestGeneratorRandomFloatRangeDecimals(t *testing.T) {
	out := generatorFuncs["random_float_range"]([]string{"1", "2", "0"})
	assert.NotContains(t, out, ".")
}

func TestGeneratorRandomStringLengthAndCharset(t *testing.T) {
	out := generatorFuncs["random_string"]([]string{"6", "a"})
	assert.Equal(t, "aaaaaa", out)
}

func TestGeneratorRegexGen(t *testing.T) {
	out := generatorFuncs["regex_gen"]([]string{`[a-z]{5}`})
	assert.Len(t, out, 5)
}

func TestGeneratorRegexGenInvalidPattern(t *testing.T) {
	out := generatorFuncs["regex_gen"]([]string{"(("})
	assert.Equal(t, "ERROR:regex_gen_failed", out)
}

func TestShiftedTimeFutureAndPast(t *testing.T) {
	future := generatorFuncs["time_future"]([]string{"1h", time.RFC3339})
	past := generatorFuncs["time_past"]([]string{"1h", time.RFC3339})

	ft, err := time.Parse(time.RFC3339, future)
	require.NoError(t, err)
	pt, err := time.Parse(time.RFC3339, past)
	require.NoError(t, err)
	assert.True(t, ft.After(pt))
}

func TestShiftedTimeMissingDuration(t *testing.T) {
	assert.Equal(t, "ERROR:duration_required", shiftedTime(nil, 1))
}

func TestResolveBuiltinKnownNames(t *testing.T) {
	for _, name := range []string{"uuid", "random_int", "timestamp", "timestamp_ms", "random_email", "random_bool", "random_alphanum"} {
		v, ok := resolveBuiltin(name)
		assert.True(t, ok, name)
		assert.NotEmpty(t, v, name)
	}
}

func TestResolveBuiltinUnknown(t *testing.T) {
	_, ok := resolveBuiltin("totally_unknown")
	assert.False(t, ok)
}

func TestParseArgsSplitsOnCommaHonoringQuotes(t *testing.T) {
	args := parseArgs(`"a,b",c, d `)
	assert.Equal(t, []string{"a,b", "c", "d"}, args)
}

func TestParseArgsEmpty(t *testing.T) {
	assert.Empty(t, parseArgs(""))
}
