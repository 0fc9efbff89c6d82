// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package receipt

// ScaleDimensions exposes scaleDimensions for testing.
var ScaleDimensions = scaleDimensions
