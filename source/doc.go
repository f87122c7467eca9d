// Package source contains implementations of the batch.RecordSource
// interface:
//
//   - File: newline-delimited JSON read from a file or stdin, optionally
//     gzip or zstd compressed
//   - Channel: records taken from a channel of raw JSON documents
//   - Slice: records taken from an in-memory list, for tests and fixtures
//
// Every source is pull-based. A record is read only when Next is called, so a
// source never holds more than the one record being returned.
//
// Basic usage of the File source:
//
//	src, err := source.Open("stackoverflow.json")
//	if err != nil {
//		return err
//	}
//	defer src.Close()
//
//	for {
//		rec, err := src.Next(ctx)
//		if err == io.EOF {
//			break
//		}
//		if err != nil {
//			return err
//		}
//		fmt.Println(rec.Seq(), string(rec.Doc()))
//	}
package source
