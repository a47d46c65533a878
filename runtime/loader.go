// Package runtime handles the in-process realtime state and the loading of moderation files.
package runtime

import (
	"bufio"
	"bytes"
	"embed"
	"interest-chat/errors"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
)

//go:embed censored/*
var censoredFolder embed.FS

// CensoredData carries the result of the loading process including metadata for logging.
type CensoredData struct {
	Words     []string
	Languages []string
}

// CensoredLoader reads one dictionary of censored words per language file.
type CensoredLoader struct {
	fs  fs.FS
	dir string
}

// NewCensoredLoader reads from dir on disk, or from the embedded dictionaries when dir is empty.
func NewCensoredLoader(dir string) *CensoredLoader {
	if dir == "" {
		return &CensoredLoader{fs: censoredFolder, dir: "censored"}
	}
	return &CensoredLoader{fs: os.DirFS(dir), dir: "."}
}

// LoadAll identifies .txt files as language dictionaries and parses their contents into a unique, sorted list of words.
func (l *CensoredLoader) LoadAll() (*CensoredData, error) {
	entries, err := fs.ReadDir(l.fs, l.dir)
	if err != nil {
		return nil, err
	}

	var languages []string
	uniqueWords := make(map[string]struct{})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}

		// "fr.txt" -> "fr"
		languages = append(languages, strings.TrimSuffix(entry.Name(), ".txt"))

		data, err := fs.ReadFile(l.fs, path.Join(l.dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		// ⚠️Don't use strings.Split, line endings differ
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				uniqueWords[line] = struct{}{}
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	if len(languages) == 0 {
		return nil, errors.ErrNoCensoredFiles
	}
	if len(uniqueWords) == 0 {
		return nil, errors.ErrEmptyWords
	}

	words := make([]string, 0, len(uniqueWords))
	for w := range uniqueWords {
		words = append(words, w)
	}
	sort.Strings(words)

	return &CensoredData{
		Words:     words,
		Languages: languages,
	}, nil
}
