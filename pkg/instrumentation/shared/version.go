// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package shared

import "runtime/debug"

const modulePath = "github.com/open-telemetry/opentelemetry-go-native-bridge"

// ModuleVersion reports the version of this module as recorded in the build
// info of the running binary, or serviceVersion when it is not recorded.
func ModuleVersion() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return serviceVersion
	}
	if bi.Main.Path == modulePath && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	for _, dep := range bi.Deps {
		if dep.Path == modulePath {
			return dep.Version
		}
	}
	return serviceVersion
}
