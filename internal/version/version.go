// Package version holds the ngic release version.
package version

// Version is the released version of ngic. Release builds override it with
// -ldflags "-X github.com/drhuang0922/ngic/internal/version.Version=x.y.z".
var Version = "1.0.0"
