// Command wmclean removes overlay watermarks from images, PDFs and video.
//
// Files can be cleaned directly (wmclean clean), previewed to check which
// pixels the classifier would repair (wmclean preview), or queued for the
// background daemon (wmclean queue add, wmclean daemon).
package main
