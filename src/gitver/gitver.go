// Package gitver provides git-based revision and version detection. The run
// records the revision in its banner and manifest, and falls back to the
// tag-derived version when the configuration does not pin one.
package gitver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// ErrNotRepository means no git repository encloses the directory.
var ErrNotRepository = errors.New("not a git repository")

// VersionInfo holds resolved version metadata from git.
type VersionInfo struct {
	Version    string // full version: "1.2.3", "1.2.3-alpha.1", "0.0.0-dev+abc1234"
	Base       string // semver base without prerelease: "1.2.3"
	Prerelease string // "alpha.1", "rc.1", or "" for stable
	Tag        string // nearest semver tag name, as written
	SHA        string // short HEAD hash
	Commit     string // full HEAD hash
	Branch     string // empty on a detached HEAD
	IsRelease  bool   // true if HEAD is exactly at the tag
	Dirty      bool   // true if the worktree has uncommitted changes
}

const shortSHA = 7

// DetectVersion resolves version info for the repository enclosing rootDir.
func DetectVersion(rootDir string) (*VersionInfo, error) {
	repo, err := git.PlainOpenWithOptions(rootDir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%s: %w", rootDir, ErrNotRepository)
		}
		return nil, fmt.Errorf("opening repository: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("getting HEAD: %w", err)
	}

	v := &VersionInfo{
		Commit: head.Hash().String(),
		SHA:    head.Hash().String()[:shortSHA],
	}
	if head.Name().IsBranch() {
		v.Branch = head.Name().Short()
	}

	if wt, err := repo.Worktree(); err == nil {
		if status, err := wt.Status(); err == nil {
			v.Dirty = !status.IsClean()
		}
	}

	tags, err := semverTags(repo)
	if err != nil {
		return nil, err
	}

	tag, ver, exact, err := nearestTag(repo, head.Hash(), tags)
	if err != nil {
		return nil, err
	}
	if ver == nil {
		v.Version = fmt.Sprintf("0.0.0-dev+%s", v.SHA)
		v.Base = "0.0.0"
		return v, nil
	}

	v.Tag = tag
	v.Base = fmt.Sprintf("%d.%d.%d", ver.Major(), ver.Minor(), ver.Patch())
	v.Prerelease = ver.Prerelease()
	v.Version = v.Base
	if v.Prerelease != "" {
		v.Version += "-" + v.Prerelease
	}
	v.IsRelease = exact && !v.Dirty

	// If not a release, append dev suffix
	if !v.IsRelease {
		v.Version = fmt.Sprintf("%s-dev+%s", v.Version, v.SHA)
	}
	return v, nil
}

type taggedVersion struct {
	name    string
	version *semver.Version
}

// semverTags maps commit hashes to the highest semver tag pointing at them.
// Annotated tags are peeled to their commit; non-semver tags are ignored.
func semverTags(repo *git.Repository) (map[plumbing.Hash]taggedVersion, error) {
	iter, err := repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	defer iter.Close()

	out := make(map[plumbing.Hash]taggedVersion)
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		ver, err := semver.NewVersion(name)
		if err != nil {
			return nil
		}

		hash := ref.Hash()
		if tagObj, err := repo.TagObject(hash); err == nil {
			commit, err := tagObj.Commit()
			if err != nil {
				return nil
			}
			hash = commit.Hash
		}

		if cur, ok := out[hash]; !ok || ver.GreaterThan(cur.version) {
			out[hash] = taggedVersion{name: name, version: ver}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading tags: %w", err)
	}
	return out, nil
}

// nearestTag walks history from head and returns the first tagged commit.
func nearestTag(repo *git.Repository, head plumbing.Hash, tags map[plumbing.Hash]taggedVersion) (string, *semver.Version, bool, error) {
	if len(tags) == 0 {
		return "", nil, false, nil
	}
	if tv, ok := tags[head]; ok {
		return tv.name, tv.version, true, nil
	}

	iter, err := repo.Log(&git.LogOptions{From: head, Order: git.LogOrderCommitterTime})
	if err != nil {
		return "", nil, false, fmt.Errorf("walking history: %w", err)
	}
	defer iter.Close()

	var found *taggedVersion
	err = iter.ForEach(func(c *object.Commit) error {
		if tv, ok := tags[c.Hash]; ok {
			found = &tv
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return "", nil, false, fmt.Errorf("walking history: %w", err)
	}
	if found == nil {
		return "", nil, false, nil
	}
	return found.name, found.version, false, nil
}

// ResolveVersion returns pinned when set, else the detected version, else
// a dev version for builds outside a repository.
func ResolveVersion(pinned string, info *VersionInfo) string {
	if s := strings.TrimSpace(pinned); s != "" {
		return strings.TrimPrefix(s, "v")
	}
	if info != nil {
		return info.Version
	}
	return "0.0.0-dev"
}
