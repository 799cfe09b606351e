package dispatch

// RunWorker drives one logical worker against the dispatcher until no
// source remains claimable, doing its own neighbor reads for each
// FrontierScanMorsel (storage access needs no lock: the underlying
// catalog.Storage is read-only) and reporting results back via
// FinishBFSMorsel/WriteMorsel. Several goroutines calling RunWorker
// against the same Dispatcher implement the nTkS scheduling mode; calling
// it from exactly one goroutine per claimed source implements 1T1S.
func RunWorker(d *Dispatcher, workerID int) {
	for {
		m := d.GetBFSMorsel(workerID)
		switch m.Kind {
		case NoWorkToShare:
			if d.State() == Complete {
				return
			}
			continue
		case FrontierScanMorsel:
			storage, relTable, dir := d.EntryDeps(m.EntryID)
			var discoveries []Discovery
			for _, node := range m.Nodes {
				it, err := storage.AdjListIterator(relTable, dir, node)
				if err != nil {
					continue
				}
				for {
					nb, ok := it.Next()
					if !ok {
						break
					}
					discoveries = append(discoveries, Discovery{Node: nb, Via: node})
				}
			}
			d.FinishBFSMorsel(m, discoveries)
		case PathWriteMorsel:
			d.WriteMorsel(workerID, m)
		}
	}
}
