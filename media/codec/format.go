package codec

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	validatorV10 "github.com/go-playground/validator/v10"

	apperrors "github.com/leeforge/imgsqueeze/errors"
)

// Supported MIME types.
const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEWebP = "image/webp"

	// OutputFormatAuto keeps each image's declared type.
	OutputFormatAuto = "auto"
)

// MaxFileSize is the largest accepted input, in bytes.
const MaxFileSize int64 = 20 * 1024 * 1024

// DefaultQuality is the initial value of Settings.Quality.
const DefaultQuality = 0.8

// AcceptedTypes lists the declared MIME types ingestion accepts.
var AcceptedTypes = []string{MIMEJPEG, MIMEPNG, MIMEWebP}

// Settings are the user-adjustable compression parameters.
type Settings struct {
	// Quality is a fraction in [0,1]. Ignored when the output is PNG.
	Quality float64 `json:"quality" validate:"gte=0,lte=1"`
	// MaxWidth caps the output width; 0 means no resizing.
	MaxWidth int `json:"maxWidth" validate:"gte=0"`
	// OutputFormat is "auto" or one of the supported MIME types.
	OutputFormat string `json:"outputFormat" validate:"oneof=auto image/jpeg image/png image/webp"`
}

// DefaultSettings returns quality 0.8, no resizing, auto format.
func DefaultSettings() Settings {
	return Settings{
		Quality:      DefaultQuality,
		MaxWidth:     0,
		OutputFormat: OutputFormatAuto,
	}
}

var validate *validatorV10.Validate

func init() {
	validate = validatorV10.New()
}

// Validate checks the settings ranges.
func (s Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	if fieldErrs, ok := err.(validatorV10.ValidationErrors); ok && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperrors.NewInvalid(fe.Field(), fe.Value(), validationMessage(fe))
	}
	return apperrors.Wrap(err, apperrors.ErrorTypeInvalid, "invalid compression settings")
}

func validationMessage(fe validatorV10.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation for tag '%s'", fe.Tag())
	}
}

// IsAccepted reports whether mimeType is one of AcceptedTypes.
func IsAccepted(mimeType string) bool {
	for _, t := range AcceptedTypes {
		if t == mimeType {
			return true
		}
	}
	return false
}

// ResolveOutputType returns the concrete MIME type an image is encoded to.
func ResolveOutputType(s Settings, sourceType string) string {
	if s.OutputFormat != OutputFormatAuto && s.OutputFormat != "" {
		return s.OutputFormat
	}
	return sourceType
}

// ResolveQuality returns the quality handed to the encoder, or nil when the
// output type is lossless PNG.
func ResolveQuality(outputType string, quality float64) *float64 {
	if outputType == MIMEPNG {
		return nil
	}
	q := quality
	return &q
}

// Extension maps a MIME type to its canonical filename suffix.
func Extension(mimeType string) string {
	switch mimeType {
	case MIMEJPEG:
		return "jpg"
	case MIMEPNG:
		return "png"
	case MIMEWebP:
		return "webp"
	default:
		return "jpg"
	}
}

// OutputName keeps the original name under auto; otherwise it replaces the last
// extension with the canonical one for outputType.
func OutputName(original string, s Settings, outputType string) string {
	if s.OutputFormat == OutputFormatAuto || s.OutputFormat == "" {
		return original
	}
	return trimExtension(original) + "." + Extension(outputType)
}

// trimExtension drops a trailing ".xxx"; a lone trailing dot is not an extension.
func trimExtension(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return name
	}
	return name[:idx]
}

// Round rounds half toward positive infinity. x+0.5 is not used because the
// sum can round up, e.g. for 0.49999999999999994.
func Round(x float64) int {
	f := math.Floor(x)
	if x-f >= 0.5 {
		f++
	}
	return int(f)
}

var sizeUnits = []string{"B", "KB", "MB", "GB"}

// FormatSize renders a byte count with 1024-based units and at most two decimals.
func FormatSize(bytes int64) string {
	if bytes == 0 {
		return "0 B"
	}

	sign := ""
	v := float64(bytes)
	if v < 0 {
		sign = "-"
		v = -v
	}

	i := int(math.Floor(math.Log(v) / math.Log(1024)))
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}
	scaled := math.Round(v/math.Pow(1024, float64(i))*100) / 100
	return sign + strconv.FormatFloat(scaled, 'f', -1, 64) + " " + sizeUnits[i]
}
