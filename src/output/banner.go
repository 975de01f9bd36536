package output

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// BannerInfo holds the identity fields displayed under the title.
type BannerInfo struct {
	Version string
	SHA     string
	Branch  string
	Date    string
}

// Banner prints the buildpipe title with version info.
// The banner always goes through the build log, so it has no color path.
func Banner(w io.Writer, info BannerInfo) {
	title := "buildpipe"
	rule := strings.Repeat("═", sectionWidth+1)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "    %s\n", rule)
	fmt.Fprintf(w, "    %s\n", title)
	if id := identityLine(info); id != "" {
		fmt.Fprintf(w, "    %s\n", id)
	}
	fmt.Fprintf(w, "    %s\n", rule)
}

// identityLine joins the populated identity fields on one line.
func identityLine(info BannerInfo) string {
	var items []string
	if info.Version != "" {
		items = append(items, info.Version)
	}
	if info.SHA != "" && info.Branch != "" {
		items = append(items, info.SHA+" · "+info.Branch)
	} else if info.SHA != "" {
		items = append(items, info.SHA)
	}
	if info.Date != "" {
		items = append(items, info.Date)
	}
	return strings.Join(items, "  ")
}

// NewBannerInfo creates a BannerInfo with today's date.
// Version, SHA, and Branch should be populated from gitver.Revision.
func NewBannerInfo(version, sha, branch string) BannerInfo {
	return BannerInfo{
		Version: version,
		SHA:     sha,
		Branch:  branch,
		Date:    time.Now().UTC().Format("2006-01-02"),
	}
}
