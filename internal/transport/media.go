package transport

import (
	"net/url"
	"path"
	"strings"
)

var audioExt = map[string]bool{
	".mp3": true, ".m4a": true, ".ogg": true, ".oga": true,
	".opus": true, ".wav": true, ".flac": true, ".aac": true,
}

// MediaKindFor picks audio or photo from the file extension of a URL or
// file name. Anything that is not a known audio extension is a photo.
func MediaKindFor(ref string) MediaKind {
	p := ref
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		p = u.Path
	}
	if audioExt[strings.ToLower(path.Ext(p))] {
		return MediaAudio
	}
	return MediaPhoto
}

// FileName is the last path segment of a media URL, without query or
// fragment. It returns "" when the URL has no usable segment.
func FileName(ref string) string {
	p := ref
	if u, err := url.Parse(ref); err == nil {
		p = u.Path
	}
	name := path.Base(p)
	switch name {
	case "", ".", "/", "..":
		return ""
	}
	return name
}
