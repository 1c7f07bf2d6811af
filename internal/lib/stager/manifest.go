package stager

import (
	"fmt"
	"os"
	"regexp"

	"github.com/spf13/afero"
)

var (
	versionLine = regexp.MustCompile(`(?im)^([ \t/*#@]*Version[ \t]*:[ \t]*)([^\r\n]*)`)
	nameLine    = regexp.MustCompile(`(?im)^([ \t/*#@]*)Plugin[ \t]*Name[ \t]*:[^\r\n]*`)
)

// RewriteVersion sets the Version header of a plugin main file. The first
// Version line keeps its prefix and gets the new value. Without one, a
// Version line is inserted right after the Plugin Name line, reusing its
// comment prefix and line ending.
func RewriteVersion(content []byte, version string) ([]byte, error) {
	if m := versionLine.FindSubmatchIndex(content); m != nil {
		out := make([]byte, 0, len(content)+len(version))
		out = append(out, content[:m[3]]...)
		out = append(out, version...)
		out = append(out, content[m[5]:]...)
		return out, nil
	}

	m := nameLine.FindSubmatchIndex(content)
	if m == nil {
		return nil, ErrManifestHeader
	}
	prefix := content[m[2]:m[3]]
	eol := "\n"
	if m[1] < len(content) && content[m[1]] == '\r' {
		eol = "\r\n"
	}
	line := eol + string(prefix) + "Version: " + version

	out := make([]byte, 0, len(content)+len(line))
	out = append(out, content[:m[1]]...)
	out = append(out, line...)
	out = append(out, content[m[1]:]...)
	return out, nil
}

// RewriteManifest applies RewriteVersion to the file at path in place.
func RewriteManifest(fs afero.Fs, path, version string) error {
	info, err := fs.Stat(path)
	if os.IsNotExist(err) || (err == nil && info.IsDir()) {
		return fmt.Errorf("%w: %s", ErrManifestMissing, path)
	}
	if err != nil {
		return err
	}

	content, err := afero.ReadFile(fs, path)
	if err != nil {
		return err
	}
	rewritten, err := RewriteVersion(content, version)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return afero.WriteFile(fs, path, rewritten, info.Mode().Perm()|0200)
}
