// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package animation provides asynchronous decoding of animated images.
//
// An [Asset] owns the encoded bytes of an animated image and decodes them
// in the background. The first frame, the cover, is made available as soon
// as it is decoded so that a host can display it while the remaining
// metadata is extracted. Frames other than the cover are materialized on
// demand by [Asset.ImageAt] and held in a bounded cache.
//
// Container formats are handled by [FrameDecoder] implementations. GIF and
// WebP decoders are provided, along with a decoder that renders text as a
// scrolling marquee.
package animation
