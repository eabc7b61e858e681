/*
Package operation runs sync work across the configured accounts.

	+-------------+        +-------------+
	|   Runner    | -----> |  Operation  |  sync / copy / export / import / clean
	| (errgroup)  |        +------+------+
	+-------------+               |
	                       +------+------+
	                       | storagesync |
	                       |  (Service)  |
	                       +-------------+

🎯 Purpose:
- Binds config accounts to registered providers (Resolve)
- Runs operations with bounded parallelism, one run_id per operation
- Keeps each account's console output together and tallies the outcome

🔍 Example:

	targets, err := operation.Resolve(ctx, cfg, store, codec.Default())
	if err != nil {
		return err
	}

	ops := make([]operation.Operation, 0, len(targets))
	for _, t := range targets {
		ops = append(ops, operation.NewSyncOperation(t))
	}

	reports, err := operation.NewRunner(cfg.Parallelism).Run(ctx, ops...)
*/
package operation
