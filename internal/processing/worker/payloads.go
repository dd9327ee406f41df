package worker

const (
	JobKindAssembleOrder = "assemble_order"
	JobKindDeliverOrders = "deliver_orders"
)

type AssembleOrderPayload struct {
	ProcessingOrderID int64 `json:"processing_order_id"`
}

type DeliverOrdersPayload struct {
	ProcessingOrderIDs []int64 `json:"processing_order_ids"`
}
