package fix

import (
	"embed"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

//go:embed spec/*.xml
var specFS embed.FS

// SchemaDirEnv overrides the bundled schema location: when set, schema XML
// is read from <dir>/<VERSION>.xml instead of the embedded copies.
const SchemaDirEnv = "FIX_SCHEMA_DIR"

// LoadProtocol constructs a Protocol for a version tag such as "fix44".
func LoadProtocol(logger *zap.Logger, version string) (*Protocol, error) {
	name := strings.ToUpper(version) + ".xml"

	if dir := os.Getenv(SchemaDirEnv); dir != "" {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, errors.WithMessage(err, "fail read schema override for "+version)
		}
		return ParseProtocol(logger, data)
	}

	data, err := specFS.ReadFile("spec/" + name)
	if err != nil {
		return nil, errors.WithMessage(errUnsupportedVersion(version), "no bundled schema")
	}
	return ParseProtocol(logger, data)
}
