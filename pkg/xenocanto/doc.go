// Package xenocanto is a client for the xeno-canto recordings search API.
//
// FetchPage requests one page of results for a query and decodes it into a
// RecordingPage. Each Recording keeps its fields in the order the API sent
// them, which the metadata writer relies on for its CSV header.
//
//	client := xenocanto.NewClient(cfg, log)
//	page, err := client.FetchPage(ctx, xenocanto.QueryRequest{Query: "Turdus merula", Page: 1})
//	if errors.Is(err, errs.ErrFetchFailed) {
//	    // retries are exhausted or the response was unusable
//	}
//	for _, rec := range page.Recordings {
//	    fmt.Println(rec.ID(), rec.Genus(), rec.Species(), rec.FileURL())
//	}
//
// Requests carry a rotated browser User-Agent and wait on a shared token
// bucket. The same client streams audio files through OpenAsset.
package xenocanto
