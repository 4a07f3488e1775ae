// Package ocr provides Optical Character Recognition (OCR) functionality using Tesseract.
//
// This package wraps the Tesseract OCR engine (via gosseract/v2) to read the
// text printed on slide labels and, more generally, any region of a scene.
//
// # Prerequisites
//
// Tesseract must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr
//   - macOS: brew install tesseract
//
// Language data files are required for each language. When they live outside
// Tesseract's default location, point Options.TessdataPrefix (the
// ocr.tessdataPrefix config key) at the directory holding them.
//
// # Functions
//
//   - ExtractLabelText: OCR of the slide's auxiliary "Label" image
//   - ExtractSceneText: OCR on a rectangular region of any scene
//   - ExtractImageText: OCR on an in-memory image
//   - DetectTextRegions: Find text blocks without reading them
//
// # Label Orientation
//
// Labels are frequently stored rotated by a quarter turn. Options.Rotate turns
// the image before recognition and Options.Upscale enlarges small labels;
// either way, reported bounds are in the coordinates of the source image.
//
// # Error Handling
//
// Functions return errors for missing label images (ErrNoLabel), region
// reads rejected by the scene, unsupported language codes and Tesseract
// initialization failures. If bounding box extraction fails, ExtractImageText
// still returns the extracted text with an empty Regions slice.
package ocr
