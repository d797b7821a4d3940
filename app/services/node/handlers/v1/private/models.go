package private

// syncRequest asks the node to pull the chain of the specified peer.
type syncRequest struct {
	URL string `json:"url" validate:"required"`
}

// mineRequest asks the node to mine until the chain holds Size blocks.
type mineRequest struct {
	Size int `json:"size" validate:"required,min=1"`
}

type syncResponse struct {
	Status string `json:"status"`
	Length int    `json:"length"`
	Latest string `json:"latest_block_hash"`
}

type mineResponse struct {
	Status string `json:"status"`
	Target int    `json:"target"`
	Length int    `json:"length"`
}
