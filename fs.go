package wsgi

import (
	"errors"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"slices"
	"strconv"
)

// ServeFS is a simple App that serves static files from an fs.FS filesystem.
// The file is named by a Router path parameter and looked up in a
// subdirectory of the filesystem. This is especially useful when embedding
// static files:
//
//	//go:embed server_files
//	var all_files embed.FS
//
//	router.Get("/css/:path*", wsgi.ServeFS(all_files, "static/css", "path"))
//	router.Get("/i/:path*", wsgi.ServeFS(all_files, "static/images", "path"))
//
// The file is streamed in chunks as the body is pulled.
func ServeFS(f fs.FS, fsRoot string, pathParam string) App {
	sub, err := fs.Sub(f, fsRoot)
	if err != nil {
		panic(err)
	}
	return func(env Environ, start StartResponse) Body {
		name := path.Clean(RouteParams(env)[pathParam])
		file, err := sub.Open(name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
				return NotFound(env, start)
			}
			return Fail(err)
		}
		return func(yield func([]byte, error) bool) {
			defer file.Close()
			info, err := file.Stat()
			if err != nil {
				yield(nil, err)
				return
			} else if info.IsDir() {
				for chunk, err := range NotFound(env, start) {
					if !yield(chunk, err) {
						return
					}
				}
				return
			}
			ctype := mime.TypeByExtension(path.Ext(name))
			if ctype == "" {
				ctype = "application/octet-stream"
			}
			if err := start("200 OK", Headers{
				{"Content-Type", ctype},
				{"Content-Length", strconv.FormatInt(info.Size(), 10)},
			}); err != nil {
				yield(nil, err)
				return
			}
			if env.Get("REQUEST_METHOD") == http.MethodHead {
				return
			}
			buf := make([]byte, 32<<10)
			for {
				n, err := file.Read(buf)
				if n > 0 && !yield(slices.Clone(buf[:n]), nil) {
					return
				}
				if errors.Is(err, io.EOF) {
					return
				} else if err != nil {
					yield(nil, err)
					return
				}
			}
		}
	}
}
