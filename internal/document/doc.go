// Package document converts between PDF documents and page frames.
//
// Pages are rendered with the pdftoppm executable, cleaned frames are
// composed back into a PDF with gofpdf, and page counting, page-range
// extraction and merging for the chunk splitter are done in memory with
// pdfcpu.
package document
