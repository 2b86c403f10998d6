package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// CheckModelFormat checks that a model exported in modelFormat can be read by a
// build supporting supportedFormat.
//
// Compatibility Rules:
//   - If either version is "main" (development export), the check is skipped
//   - Major versions must match exactly
//   - The model minor version must not be newer than the supported one
//   - Patch versions can differ
//
// Examples:
//   - Supported 1.1.0, Model 1.1.3 -> OK
//   - Supported 1.1.0, Model 1.0.0 -> OK (older minor)
//   - Supported 1.1.0, Model 1.2.0 -> ERROR (newer minor)
//   - Supported 1.1.0, Model 2.0.0 -> ERROR (major differs)
func CheckModelFormat(supportedFormat, modelFormat string) error {
	supportedFormat = strings.TrimPrefix(supportedFormat, "v")
	modelFormat = strings.TrimPrefix(modelFormat, "v")

	if supportedFormat == "main" || modelFormat == "main" {
		return nil
	}

	supported, err := semver.NewVersion(supportedFormat)
	if err != nil {
		return fmt.Errorf("invalid supported format '%s': %w", supportedFormat, err)
	}

	model, err := semver.NewVersion(modelFormat)
	if err != nil {
		return fmt.Errorf("invalid model format '%s': %w", modelFormat, err)
	}

	if supported.Major() != model.Major() {
		return fmt.Errorf("major version mismatch: reader supports %d.x.x but model is %d.x.x",
			supported.Major(), model.Major())
	}

	if model.Minor() > supported.Minor() {
		return fmt.Errorf("minor version too new: reader supports up to %d.%d.x but model is %d.%d.x",
			supported.Major(), supported.Minor(), model.Major(), model.Minor())
	}

	return nil
}
