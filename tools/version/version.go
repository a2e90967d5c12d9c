/*
Copyright (c) 2019-2021 Andreas T Jonsson

This software is provided 'as-is', without any express or implied
warranty. In no event will the authors be held liable for any damages
arising from the use of this software.

Permission is granted to anyone to use this software for any purpose,
including commercial applications, and to alter it and redistribute it
freely, subject to the following restrictions:

1. The origin of this software must not be misrepresented; you must not
   claim that you wrote the original software. If you use this software
   in a product, an acknowledgment in the product documentation would be
   appreciated but is not required.
2. Altered source versions must be plainly marked as such, and must not be
   misrepresented as being the original software.
3. This notice may not be removed or altered from any source distribution.
*/

// Command version generates version/current.go.
package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/andreas-jonsson/virtualspi/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	defaultVersion = "0.1.0.0"
	startYear      = 2019
	copyrightFmt   = "Copyright (c) %v Andreas T Jonsson"
)

func main() {
	var file, pkg, env string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Generate the version package",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return generate(file, pkg, env)
		},
	}
	cmd.Flags().StringVar(&file, "file", "-", "Save the generated output to file.")
	cmd.Flags().StringVar(&pkg, "package", "version", "Package name of the generated output.")
	cmd.Flags().StringVar(&env, "variable", "VSPI_VERSION", "Environment variable containing the version number.")

	if err := cmd.Execute(); err != nil {
		logrus.Fatal(err)
	}
}

func gitHash() string {
	res, err := exec.Command("git", "rev-parse", "HEAD").Output()
	if err != nil {
		logrus.WithError(err).Warn("could not parse Git hash")
	}
	return strings.TrimSpace(string(res))
}

func copyright(year int) string {
	if year == startYear {
		return fmt.Sprintf(copyrightFmt, startYear)
	}
	return fmt.Sprintf(copyrightFmt, fmt.Sprintf("%d-%d", startYear, year))
}

func generate(file, pkg, env string) error {
	s := os.Getenv(env)
	if s == "" {
		s = defaultVersion
		logrus.Infof("%s is not set. Defaulting to %s", env, s)
	}

	v, err := version.Parse(s)
	if err != nil {
		logrus.WithError(err).Warn("invalid version, using default")
		if v, err = version.Parse(defaultVersion); err != nil {
			return err
		}
	}

	values := map[string]interface{}{
		"hash":  gitHash(),
		"ver":   v,
		"copy":  copyright(time.Now().Year()),
		"pkg":   pkg,
		"local": pkg == "version",
	}

	var w io.Writer = os.Stdout
	if file != "-" {
		if err := os.MkdirAll(filepath.Dir(file), 0777); err != nil {
			return err
		}
		fp, err := os.Create(file)
		if err != nil {
			return err
		}
		defer fp.Close()
		w = fp
	}
	return tmpl.Execute(w, values)
}

var tmpl = template.Must(template.New("version").Parse(`/*
{{.copy}}

This software is provided 'as-is', without any express or implied
warranty. In no event will the authors be held liable for any damages
arising from the use of this software.

Permission is granted to anyone to use this software for any purpose,
including commercial applications, and to alter it and redistribute it
freely, subject to the following restrictions:

1. The origin of this software must not be misrepresented; you must not
   claim that you wrote the original software. If you use this software
   in a product, an acknowledgment in the product documentation would be
   appreciated but is not required.
2. Altered source versions must be plainly marked as such, and must not be
   misrepresented as being the original software.
3. This notice may not be removed or altered from any source distribution.
*/

package {{.pkg}}
{{if not .local}}
import "github.com/andreas-jonsson/virtualspi/version"
{{end}}
var (
	Current   = {{if not .local}}version.{{end}}Version{ {{.ver.Major}}, {{.ver.Minor}}, {{.ver.Patch}}, "{{.ver.Build}}" }
	Copyright = "{{.copy}}"
	Hash      = "{{.hash}}"
)
`))
