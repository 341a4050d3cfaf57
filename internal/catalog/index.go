package catalog

import (
	"axmed/internal"
	"axmed/internal/util"
)

type Index struct {
	MedicinesByID      map[int]internal.MedicineRecord
	ByName             map[string][]internal.MedicineRecord
	TokenToMedicineIDs map[string]map[int]struct{}
	NormalizedNameByID map[int]string
}

func BuildIndex(medicines []internal.MedicineRecord) *Index {
	idx := &Index{
		MedicinesByID:      map[int]internal.MedicineRecord{},
		ByName:             map[string][]internal.MedicineRecord{},
		TokenToMedicineIDs: map[string]map[int]struct{}{},
		NormalizedNameByID: map[int]string{},
	}

	for _, m := range medicines {
		idx.MedicinesByID[m.ID] = m
		normName := util.NormalizeName(m.Name)
		idx.NormalizedNameByID[m.ID] = normName
		idx.ByName[normName] = append(idx.ByName[normName], m)

		for _, token := range util.Tokenize(m.Name) {
			if _, ok := idx.TokenToMedicineIDs[token]; !ok {
				idx.TokenToMedicineIDs[token] = map[int]struct{}{}
			}
			idx.TokenToMedicineIDs[token][m.ID] = struct{}{}
		}
	}

	return idx
}
