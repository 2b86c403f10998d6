package version

// Version is the current version of the flipped bot.
// This value is set at build time using ldflags:
// -ldflags "-X github.com/rxtech-lab/flipped-trading/internal/version.Version=1.2.3"
// The value "main" indicates a development build.
var Version = "v0.3.0"

// ModelFormatVersion is the exported model format this build reads.
const ModelFormatVersion = "1.1.0"

// GetVersion returns the current version of the bot.
func GetVersion() string {
	return Version
}
