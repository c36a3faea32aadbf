// Package version provides build and version information for the challenge wizard.
package version

// Version is the current release version of the challenge wizard.
// This can be overridden at build time using:
//
//	go build -ldflags "-X github.com/AaronLay10/ChallengeWizard/internal/version.Version=x.y.z"
var Version = "0.3.0"
