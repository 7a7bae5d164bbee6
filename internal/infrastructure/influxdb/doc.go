// Package influxdb records robot telemetry in InfluxDB.
//
// Every polled state becomes one point of the litter_robot_state
// measurement, tagged with the device slug. Points are batched according to
// batch_size and flush_interval and written in the background. Failed
// batches reach the SetOnError callback.
//
//	if cfg.InfluxDB.Enabled {
//	    client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	    if err != nil {
//	        return err
//	    }
//	    defer client.Close()
//	    client.WriteDeviceState("upstairs", state)
//	}
package influxdb
