// Validation helpers producing friendly, did-you-mean style error reports
// for the base_url/worker_count/load/scenarios YAML schema, using a
// Levenshtein-distance suggestion mechanism for typo'd field and value
// names.
package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a single validation error with context and suggestions
type ValidationError struct {
	Field      string // Field path (e.g., "load.concurrency")
	Value      string // The actual value provided (if any)
	Message    string // Error description
	Expected   string // Expected format/type
	Hint       string // Helpful suggestion
	DidYouMean string // Typo correction suggestion
}

// ValidationResult holds all validation errors
type ValidationResult struct {
	Errors []ValidationError
}

// Add adds a new validation error
func (v *ValidationResult) Add(err ValidationError) {
	v.Errors = append(v.Errors, err)
}

// HasErrors returns true if there are validation errors
func (v *ValidationResult) HasErrors() bool {
	return len(v.Errors) > 0
}

// FormatErrors formats all errors into a user-friendly string
func (v *ValidationResult) FormatErrors() string {
	if !v.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("\n❌ Configuration Errors:\n")

	for i, err := range v.Errors {
		sb.WriteString(fmt.Sprintf("\n  %d. %s\n", i+1, err.Field))

		if err.Value != "" {
			sb.WriteString(fmt.Sprintf("     ├─ Value: %q\n", truncate(err.Value, 50)))
		}

		sb.WriteString(fmt.Sprintf("     ├─ Error: %s\n", err.Message))

		if err.Expected != "" {
			sb.WriteString(fmt.Sprintf("     ├─ Expected: %s\n", err.Expected))
		}

		if err.DidYouMean != "" {
			sb.WriteString(fmt.Sprintf("     ├─ Did you mean: %q?\n", err.DidYouMean))
		}

		if err.Hint != "" {
			sb.WriteString(fmt.Sprintf("     └─ 💡 Hint: %s\n", err.Hint))
		} else {
			// Replace last ├ with └ for cleaner output
			// This is handled by putting hint last
		}
	}

	sb.WriteString("\n📖 For documentation, see: https://github.com/sayl/loadgen#configuration-guide\n")

	return sb.String()
}

// Known valid load model names, for typo detection.
var validLoadModels = []string{"concurrent", "rps", "ramp", "daily_traffic"}
var validHTTPMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"}

// Hints for common fields.
var fieldHints = map[string]string{
	"base_url":          "Provide the full URL including protocol (e.g., https://api.example.com)",
	"worker_count":      "Number of concurrent workers as a positive integer (e.g., 50)",
	"duration":          "Test duration with unit (e.g., '30s', '2m', '1h')",
	"load.model":        "One of: concurrent, rps, ramp, daily_traffic",
	"load.rps":          "Target requests per second as a positive number (e.g., 100)",
	"load.ramp_duration": "Ramp duration with unit (e.g., '5m')",
	"scenarios":         "At least one scenario with a name, weight, and steps is required",
	"sampling_rate":     "Percentile sampling rate as an integer percentage from 1 to 100 (e.g., 100)",
}

// levenshteinDistance calculates the edit distance between two strings
func levenshteinDistance(a, b string) int {
	a = strings.ToLower(a)
	b = strings.ToLower(b)

	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// Create matrix
	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	// Fill matrix
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}

	return matrix[len(a)][len(b)]
}

// FindClosestMatch finds the closest matching field name from valid options
func FindClosestMatch(input string, validOptions []string) string {
	if input == "" {
		return ""
	}

	bestMatch := ""
	bestDistance := 100 // arbitrary large number

	for _, option := range validOptions {
		distance := levenshteinDistance(input, option)
		// Only suggest if distance is reasonable (at most half the option's length, plus one)
		if distance < bestDistance && distance <= len(option)/2+1 {
			bestDistance = distance
			bestMatch = option
		}
	}

	// Don't return exact matches as "did you mean"
	if strings.EqualFold(input, bestMatch) {
		return ""
	}

	return bestMatch
}

// GetHint returns a helpful hint for a field
func GetHint(field string) string {
	if hint, ok := fieldHints[field]; ok {
		return hint
	}
	return ""
}

// ValidateHTTPMethod checks if a method is valid and suggests corrections
func ValidateHTTPMethod(method string) (bool, string) {
	upper := strings.ToUpper(method)
	for _, valid := range validHTTPMethods {
		if upper == valid {
			return true, ""
		}
	}

	// Try to find close match
	suggestion := FindClosestMatch(method, validHTTPMethods)
	return false, suggestion
}

// truncate shortens a string for display
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// PreValidate checks the raw YAML document for common mistakes before it
// is converted into scenarios, returning a friendly, did-you-mean style
// report instead of the opaque error a type-conversion failure would give.
func PreValidate(doc *yamlDoc) error {
	result := &ValidationResult{}

	if doc.BaseURL == "" {
		result.Add(ValidationError{Field: "base_url", Message: "missing required field", Hint: GetHint("base_url")})
	}
	if doc.WorkerCount <= 0 {
		result.Add(ValidationError{
			Field: "worker_count", Value: fmt.Sprintf("%d", doc.WorkerCount),
			Message: "must be greater than 0", Hint: GetHint("worker_count"),
		})
	}

	if doc.Load.Model != "" {
		valid := false
		for _, m := range validLoadModels {
			if m == doc.Load.Model {
				valid = true
				break
			}
		}
		if !valid {
			err := ValidationError{
				Field: "load.model", Value: doc.Load.Model,
				Message: "unrecognized load model", Expected: strings.Join(validLoadModels, ", "),
			}
			if s := FindClosestMatch(doc.Load.Model, validLoadModels); s != "" {
				err.DidYouMean = s
			}
			result.Add(err)
		}
	}

	if doc.SamplingRate < 0 || doc.SamplingRate > 100 {
		result.Add(ValidationError{
			Field: "sampling_rate", Value: fmt.Sprintf("%d", doc.SamplingRate),
			Message: "must be between 1 and 100", Hint: GetHint("sampling_rate"),
		})
	}

	if len(doc.Scenarios) == 0 {
		result.Add(ValidationError{Field: "scenarios", Message: "no scenarios defined", Hint: GetHint("scenarios")})
	}
	for i, sc := range doc.Scenarios {
		for j, st := range sc.Steps {
			field := fmt.Sprintf("scenarios[%d].steps[%d]", i, j)
			if st.Path == "" {
				result.Add(ValidationError{Field: field + ".path", Message: "missing required path"})
			}
			if valid, suggestion := ValidateHTTPMethod(st.Method); !valid {
				err := ValidationError{
					Field: field + ".method", Value: st.Method,
					Message: "invalid HTTP method", Expected: strings.Join(validHTTPMethods, ", "),
				}
				if suggestion != "" {
					err.DidYouMean = suggestion
				}
				result.Add(err)
			}
		}
	}

	if result.HasErrors() {
		return fmt.Errorf("%s", result.FormatErrors())
	}
	return nil
}

// min returns the minimum of three integers
func min(a, b, c int) int {
	if a < b {
		if a < c {
			return a
		}
		return c
	}
	if b < c {
		return b
	}
	return c
}
