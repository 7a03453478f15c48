package memory_test

import (
	"testing"

	"github.com/ardanlabs/blockvault/foundation/blockchain/database"
	"github.com/ardanlabs/blockvault/foundation/blockchain/storage/memory"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_WriteIterate(t *testing.T) {
	t.Log("Given the need to keep blocks in memory.")
	{
		m, err := memory.New()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct storage: %v", failed, err)
		}

		for i, hash := range []string{"h0", "h1", "h2"} {
			if err := m.Write(database.BlockData{Number: uint64(i), Hash: hash}); err != nil {
				t.Fatalf("\t%s\tShould be able to write block %d: %v", failed, i, err)
			}
		}
		t.Logf("\t%s\tShould be able to write blocks in order.", success)

		if err := m.Write(database.BlockData{Number: 7}); err == nil {
			t.Fatalf("\t%s\tShould reject an out of order block.", failed)
		}
		t.Logf("\t%s\tShould reject an out of order block.", success)

		var hashes []string
		iter := m.ForEach()
		for blockData, err := iter.Next(); !iter.Done(); blockData, err = iter.Next() {
			if err != nil {
				t.Fatalf("\t%s\tShould be able to iterate: %v", failed, err)
			}
			hashes = append(hashes, blockData.Hash)
		}

		if len(hashes) != 3 || hashes[0] != "h0" || hashes[2] != "h2" {
			t.Fatalf("\t%s\tShould iterate every block in order: got %v", failed, hashes)
		}
		t.Logf("\t%s\tShould iterate every block in order.", success)

		if err := m.Reset(); err != nil {
			t.Fatalf("\t%s\tShould be able to reset: %v", failed, err)
		}
		if _, err := m.GetBlock(0); err == nil {
			t.Fatalf("\t%s\tShould have no blocks after reset.", failed)
		}
		t.Logf("\t%s\tShould have no blocks after reset.", success)
	}
}
