// Copyright 2026 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package function

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"sort"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zip"
	"github.com/pingcap/fexec/pkg/errors"
	"github.com/pingcap/fexec/pkg/plan"
	"github.com/pingcap/fexec/pkg/serialized"
)

const (
	// ManifestFile is the archive entry describing the application.
	ManifestFile = "manifest.json"

	maxFileSize = 256 << 20
)

// FunctionEntry maps a function of the application to a handler.
type FunctionEntry struct {
	Handler string `json:"handler"`
}

// AppManifest is the content of manifest.json.
type AppManifest struct {
	Name      string                   `json:"name"`
	Version   string                   `json:"version"`
	Functions map[string]FunctionEntry `json:"functions"`
}

// Application is loaded application code.
type Application struct {
	Manifest AppManifest
	files    map[string][]byte
}

// LoadApplication verifies and unpacks application code. The code is a zip
// archive with manifest.json at its root.
func LoadApplication(code *serialized.Object) (*Application, error) {
	if code == nil {
		return nil, errors.ErrApplicationCodeInvalid.GenWithStackByArgs("application code is missing")
	}
	if err := code.Validate(); err != nil {
		return nil, errors.WrapError(errors.ErrApplicationCodeInvalid, err, "integrity check failed")
	}
	switch code.Manifest.Encoding {
	case serialized.EncodingBinaryZip, serialized.EncodingRaw:
	default:
		return nil, errors.ErrApplicationCodeInvalid.GenWithStackByArgs(
			fmt.Sprintf("encoding %s is not a zip archive", code.Manifest.Encoding))
	}

	data := code.Data[code.Manifest.MetadataSize:]
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.WrapError(errors.ErrApplicationCodeInvalid, err, "not a zip archive")
	}

	app := &Application{files: make(map[string][]byte, len(zr.File))}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		content, err := readZipFile(f)
		if err != nil {
			return nil, err
		}
		app.files[path.Clean(f.Name)] = content
	}

	raw, ok := app.files[ManifestFile]
	if !ok {
		return nil, errors.ErrApplicationCodeInvalid.GenWithStackByArgs(ManifestFile + " is missing")
	}
	if err := json.Unmarshal(raw, &app.Manifest); err != nil {
		return nil, errors.WrapError(errors.ErrApplicationCodeInvalid, err, ManifestFile+" is malformed")
	}
	if len(app.Manifest.Functions) == 0 {
		return nil, errors.ErrApplicationCodeInvalid.GenWithStackByArgs(ManifestFile + " declares no functions")
	}
	return app, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > maxFileSize {
		return nil, errors.ErrApplicationCodeInvalid.GenWithStackByArgs(
			fmt.Sprintf("%s is larger than %d bytes", f.Name, maxFileSize))
	}
	rc, err := f.Open()
	if err != nil {
		return nil, errors.WrapError(errors.ErrApplicationCodeInvalid, err, "open "+f.Name)
	}
	defer rc.Close()
	content, err := io.ReadAll(io.LimitReader(rc, maxFileSize+1))
	if err != nil {
		return nil, errors.WrapError(errors.ErrApplicationCodeInvalid, err, "read "+f.Name)
	}
	if len(content) > maxFileSize {
		return nil, errors.ErrApplicationCodeInvalid.GenWithStackByArgs(
			fmt.Sprintf("%s is larger than %d bytes", f.Name, maxFileSize))
	}
	return content, nil
}

// Bind resolves the function named by ref to a registered handler.
func (a *Application) Bind(ref plan.FunctionRef, reg *Registry) (*Function, error) {
	if a.Manifest.Name != "" && a.Manifest.Name != ref.ApplicationName {
		return nil, errors.ErrApplicationCodeInvalid.GenWithStackByArgs(
			fmt.Sprintf("archive holds application %s, not %s", a.Manifest.Name, ref.ApplicationName))
	}
	if a.Manifest.Version != "" && a.Manifest.Version != ref.ApplicationVersion {
		return nil, errors.ErrApplicationCodeInvalid.GenWithStackByArgs(
			fmt.Sprintf("archive holds version %s, not %s", a.Manifest.Version, ref.ApplicationVersion))
	}
	entry, ok := a.Manifest.Functions[ref.FunctionName]
	if !ok {
		return nil, errors.ErrFunctionNotFound.GenWithStackByArgs(ref.FunctionName)
	}
	handler := entry.Handler
	if handler == "" {
		handler = ref.FunctionName
	}
	return reg.Lookup(handler)
}

// ReadFile returns the content of an archive entry.
func (a *Application) ReadFile(name string) ([]byte, bool) {
	content, ok := a.files[path.Clean(name)]
	return content, ok
}

// Files returns the sorted names of all archive entries.
func (a *Application) Files() []string {
	names := make([]string, 0, len(a.files))
	for name := range a.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PackApplication builds application code from a manifest and extra files.
func PackApplication(manifest AppManifest, files map[string][]byte) (*serialized.Object, error) {
	raw, err := json.Marshal(manifest)
	if err != nil {
		return nil, errors.Trace(err)
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	write := func(name string, content []byte) error {
		w, err := zw.Create(name)
		if err != nil {
			return errors.Trace(err)
		}
		_, err = w.Write(content)
		return errors.Trace(err)
	}
	if err := write(ManifestFile, raw); err != nil {
		return nil, err
	}
	for _, name := range names {
		if name == ManifestFile {
			continue
		}
		if err := write(name, files[name]); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Trace(err)
	}
	return serialized.NewObjectFromBytes(serialized.EncodingBinaryZip, buf.Bytes()), nil
}
