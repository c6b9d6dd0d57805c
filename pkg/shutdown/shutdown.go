package shutdown

// Please add the dependencies if you add your own priority here.
// Workers with a higher priority are shut down first.

const (
	PriorityCloseDatabase    = iota // no dependencies
	PriorityP2PHost                 // depends on PriorityCloseDatabase
	PriorityRelayService            // depends on PriorityP2PHost
	PriorityEventDispatcher         // depends on PriorityP2PHost, triggered by PriorityRelayService
	PriorityBandwidthSampler        // depends on PriorityP2PHost, feeds PriorityEventDispatcher
	PriorityDashboardFeed           // reads the metrics fed by PriorityEventDispatcher
	PriorityDashboard               // depends on PriorityDashboardFeed
	PriorityPrometheus
)
