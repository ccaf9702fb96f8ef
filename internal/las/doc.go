// Package las reads and writes uncompressed LAS point-cloud files at the
// level the correction pass needs: the public header block, planar
// coordinates decoded per record, and subset writes that preserve the
// original point format and version. Compressed (LAZ) payloads are rejected;
// decompression belongs to the external engine.
package las
