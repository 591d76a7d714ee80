// Package imaging implements the image codec used to produce published
// copies of documentation images.
//
// A Codec turns the raw bytes of a source image into the encoded bytes of a
// downsized copy. The work is split into three steps that can also be used on
// their own:
//
//   - Decode: bytes -> image.Image. PNG, JPEG, GIF, BMP, TIFF and WebP input
//     is understood. EXIF orientation is applied when AutoOrient is set.
//   - Fit: bounding-box thumbnail. The image is scaled down, never up, until
//     both dimensions fit the box. The aspect ratio is preserved.
//   - Encode: image.Image -> bytes, in the format implied by the output file
//     name (.jpg/.jpeg, .png, .gif, .bmp, .tif/.tiff).
//
// # Engines
//
// Two resampling backends are available. EngineImaging (the default) uses
// github.com/disintegration/imaging; EngineBild uses
// github.com/anthonynsimon/bild. Both honour the same Filter names and
// produce identical output dimensions.
//
// # Errors
//
// Every failure wraps one of two sentinels so callers can classify it with
// errors.Is:
//   - ErrDecode: the input is malformed or in a format with no decoder
//     (SVG, for instance)
//   - ErrEncode: the output format is unknown or the encoder failed
//
// # Transparency
//
// JPEG has no alpha channel. When a non-opaque image is encoded as JPEG it is
// first composited over Options.Background, so transparent regions do not
// turn black.
package imaging
