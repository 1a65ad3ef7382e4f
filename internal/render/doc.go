// Package render produces JPEG thumbnails from images embedded in notes,
// using libvips decode-time shrinking for large files and pure-Go decoding
// (imaging, x/image/webp) for everything else.
package render
