package hostapi

import "github.com/atotto/clipboard"

// SystemClipboard backs the clipboard operations with the OS clipboard.
type SystemClipboard struct{}

// ReadAll returns the clipboard contents.
func (SystemClipboard) ReadAll() (string, error) {
	return clipboard.ReadAll()
}

// WriteAll replaces the clipboard contents.
func (SystemClipboard) WriteAll(text string) error {
	return clipboard.WriteAll(text)
}
