package fifo

// LayerView is a layer together with the transaction that created it and
// its landed price record.
type LayerView struct {
	Layer
	Transaction *Transaction `json:"transaction,omitempty"`
	LandedPrice *LandedPrice `json:"landedPrice,omitempty"`
}

// JoinLayers attaches each layer's transaction and landed price. Missing
// references are left nil; CheckLinkage reports them.
func JoinLayers(txs []Transaction, layers []Layer, prices []LandedPrice) []LayerView {
	tranByID := make(map[int64]*Transaction, len(txs))
	for i := range txs {
		tranByID[txs[i].ID] = &txs[i]
	}
	priceByLayer := make(map[int64]*LandedPrice, len(prices))
	for i := range prices {
		priceByLayer[prices[i].FifoLayerID] = &prices[i]
	}

	out := make([]LayerView, len(layers))
	for i, l := range layers {
		out[i] = LayerView{
			Layer:       l,
			Transaction: tranByID[l.InTranID],
			LandedPrice: priceByLayer[l.ID],
		}
	}
	return out
}
