/*
Package workers sizes worker pools.

runtime.NumCPU reports the host's CPUs even inside a container limited to
two of them, while GOMAXPROCS follows the CPU quota. Pool sizes here are
derived from GOMAXPROCS so a render-farm node and an artist workstation
both get a sensible number of concurrent preview decodes.

	n := workers.ForCPU(8) // decode-heavy work, at most 8

Set STAX_WORKERS to pin the count, for example to 1 on a shared host.
*/
package workers
