package submit

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/leasenet/ledgerclient/types"
)

// CombineMultisigned merges independently signed copies of one
// transaction into a single transaction carrying every signer proof.
// Signers are deduplicated by account and sorted by account id, so the
// result does not depend on the order of copies. Two different entries for
// one account are rejected.
func CombineMultisigned(copies []*types.Transaction) (*types.Transaction, error) {
	if len(copies) == 0 {
		return nil, types.NewError(types.KindConfig, "EmptyInput: no signed copies to combine")
	}
	for i, cp := range copies {
		if cp == nil {
			return nil, types.NewError(types.KindConfig, "signed copy %d is nil", i)
		}
	}
	base, err := unsignedForm(copies[0])
	if err != nil {
		return nil, err
	}
	signers := make(map[string]types.SignerEntry)
	for i, cp := range copies {
		form, err := unsignedForm(cp)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(form, base) {
			return nil, types.NewError(types.KindConfig, "signed copy %d differs from the first copy", i)
		}
		for _, s := range cp.Signers {
			if prev, ok := signers[s.Signer.Account]; ok && prev != s {
				return nil, types.NewError(types.KindConfig, "conflicting signatures of %v", s.Signer.Account)
			}
			signers[s.Signer.Account] = s
		}
	}
	if len(signers) == 0 {
		return nil, types.NewError(types.KindConfig, "signed copies carry no signers")
	}

	combined := copies[0].Clone()
	combined.SigningPubKey = ""
	combined.TxnSignature = ""
	combined.Hash = ""
	combined.Signers = make([]types.SignerEntry, 0, len(signers))
	for _, s := range signers {
		combined.Signers = append(combined.Signers, s)
	}
	sort.Slice(combined.Signers, func(i, j int) bool {
		return signerLess(combined.Signers[i].Signer.Account, combined.Signers[j].Signer.Account)
	})
	return combined, nil
}

// unsignedForm is the transaction without any signature material.
func unsignedForm(tx *types.Transaction) ([]byte, error) {
	cp := tx.Clone()
	cp.Signers = nil
	cp.SigningPubKey = ""
	cp.TxnSignature = ""
	cp.Hash = ""
	b, err := json.Marshal(cp)
	if err != nil {
		return nil, types.WrapError(types.KindConfig, err, "encode signed copy")
	}
	return b, nil
}

// signerLess orders by numeric account id, the order the ledger requires.
func signerLess(a, b string) bool {
	idA, errA := types.DecodeAddress(a)
	idB, errB := types.DecodeAddress(b)
	if errA != nil || errB != nil {
		return a < b
	}
	return bytes.Compare(idA, idB) < 0
}
