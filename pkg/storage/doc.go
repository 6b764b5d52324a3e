// Package storage manages the local audio cache.
//
// File names are derived from a recording's id, genus and species and are
// restricted to [A-Za-z0-9._-]. Presence of a file under that name means the
// recording is already downloaded. Manager.Save writes to a hidden temporary
// file in the same directory, syncs it and renames it into place, so readers
// never observe a partial file under the final name.
//
//	m, err := storage.NewManager("xeno_canto_data/audio", 0)
//	name := storage.AssetFileName(rec.ID(), rec.Genus(), rec.Species(),
//	    storage.AssetExtension(rec.FileName(), rec.FileURL()))
//	if !m.IsDownloaded(name) {
//	    n, err := m.Save(body, name)
//	}
package storage
